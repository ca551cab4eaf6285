package idempotency

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		key         string
		expectedErr error
	}{
		{name: "uuid", key: "550e8400-e29b-41d4-a716-446655440000"},
		{name: "minimum length", key: strings.Repeat("a", MinKeyLength)},
		{name: "maximum length", key: strings.Repeat("b", MaxKeyLength)},
		{name: "underscores", key: "force_open_payments_01"},
		{name: "too short", key: "short-key", expectedErr: ErrKeyTooShort},
		{name: "empty", key: "", expectedErr: ErrKeyTooShort},
		{name: "too long", key: strings.Repeat("c", MaxKeyLength+1), expectedErr: ErrKeyTooLong},
		{name: "spaces", key: "key with spaces 123", expectedErr: ErrKeyInvalid},
		{name: "slashes", key: "circuits/payments/reset", expectedErr: ErrKeyInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := Validate(tc.key)
			if tc.expectedErr != nil {
				require.ErrorIs(t, err, tc.expectedErr)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestFromRequest(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		header      string
		expectedKey string
		expectedOK  bool
		expectedErr error
	}{
		{name: "absent"},
		{
			name:        "valid",
			header:      "reset-payments-0001",
			expectedKey: "reset-payments-0001",
			expectedOK:  true,
		},
		{
			name:        "invalid",
			header:      "nope",
			expectedOK:  true,
			expectedErr: ErrKeyTooShort,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			r := httptest.NewRequest(http.MethodPost, "/circuits/payments/reset", nil)
			if tc.header != "" {
				r.Header.Set(HeaderName, tc.header)
			}

			key, ok, err := FromRequest(r)

			require.ErrorIs(t, err, tc.expectedErr)
			require.Equal(t, tc.expectedOK, ok)
			require.Equal(t, tc.expectedKey, key)
		})
	}
}

func TestReplayKey(t *testing.T) {
	t.Parallel()

	base := ReplayKey(http.MethodPost, "/circuits/payments/reset", "reset-payments-0001")

	require.True(t, strings.HasPrefix(base, replayKeyPrefix+":"))
	require.Len(t, base, len(replayKeyPrefix)+1+64)
	require.Equal(t, base, ReplayKey(http.MethodPost, "/circuits/payments/reset", "reset-payments-0001"))

	cases := []struct {
		name   string
		method string
		path   string
		key    string
	}{
		{name: "different method", method: http.MethodPut, path: "/circuits/payments/reset", key: "reset-payments-0001"},
		{name: "different path", method: http.MethodPost, path: "/circuits/payments/force-open", key: "reset-payments-0001"},
		{name: "different key", method: http.MethodPost, path: "/circuits/payments/reset", key: "reset-payments-0002"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			require.NotEqual(t, base, ReplayKey(tc.method, tc.path, tc.key))
		})
	}
}

func TestContext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name          string
		key           string
		set           bool
		expectedFound bool
	}{
		{name: "key set", key: "force-open-00000001", set: true, expectedFound: true},
		{name: "empty key set", key: "", set: true},
		{name: "nothing set"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctx := t.Context()
			if tc.set {
				ctx = WithKey(ctx, tc.key)
			}

			key, found := FromContext(ctx)

			require.Equal(t, tc.expectedFound, found)
			require.Equal(t, tc.key, key)
		})
	}
}
