package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"roomchat/internal/pkg/errs"
)

func TestClassify(t *testing.T) {
	unique := &pgconn.PgError{Code: uniqueViolation}
	foreignKey := &pgconn.PgError{Code: foreignKeyViolation}

	tests := []struct {
		name     string
		err      error
		notFound int
		conflict int
		wantCode int
	}{
		{name: "no rows", err: pgx.ErrNoRows, notFound: errs.ErrRoomNotFound, wantCode: errs.ErrRoomNotFound},
		{name: "no rows not expected", err: pgx.ErrNoRows, wantCode: errs.ErrStoreUnavailable},
		{name: "unique", err: fmt.Errorf("insert: %w", unique), conflict: errs.ErrUserNameTaken, wantCode: errs.ErrUserNameTaken},
		{name: "foreign key", err: foreignKey, wantCode: errs.ErrRoomNotFound},
		{name: "context", err: context.DeadlineExceeded, wantCode: errs.ErrStoreUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, tt.notFound, tt.conflict)
			assert.True(t, errs.HasCode(got, tt.wantCode), "got %v", got)
		})
	}

	assert.NoError(t, classify(nil, errs.ErrRoomNotFound, 0))
}

func TestStoreUnavailableKeepsCause(t *testing.T) {
	got := classify(context.Canceled, 0, 0)

	assert.ErrorIs(t, got, context.Canceled)
	assert.Equal(t, errs.KindStoreUnavailable, errs.KindOf(got))
}
