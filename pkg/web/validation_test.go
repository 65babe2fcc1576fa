package web

import (
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

func TestGetErrorMsg(t *testing.T) {
	t.Parallel()

	type request struct {
		FromAccountID int64  `validate:"required,min=1"`
		ToAccountID   int64  `validate:"required,min=1,nefield=FromAccountID"`
		Email         string `validate:"omitempty,email"`
		PageSize      int32  `validate:"omitempty,max=100"`
	}

	testCases := []struct {
		name string
		req  request
		want string
	}{
		{
			name: "Required",
			req:  request{ToAccountID: 2},
			want: "from_account_id field is required",
		},
		{
			name: "NotEqualField",
			req:  request{FromAccountID: 2, ToAccountID: 2},
			want: "to_account_id field must differ from from_account_id",
		},
		{
			name: "Email",
			req:  request{FromAccountID: 1, ToAccountID: 2, Email: "nope"},
			want: "email field must be a valid email",
		},
		{
			name: "Max",
			req:  request{FromAccountID: 1, ToAccountID: 2, PageSize: 101},
			want: "page_size field must be at most 100",
		},
	}

	v := validator.New()

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := v.Struct(tc.req)

			var ve validator.ValidationErrors
			require.True(t, errors.As(err, &ve))
			require.Equal(t, tc.want, GetErrorMsg(ve))
		})
	}
}
