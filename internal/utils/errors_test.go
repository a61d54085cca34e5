package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBBError_Error(t *testing.T) {
	tests := []struct {
		name     string
		context  string
		cause    error
		expected string
	}{
		{
			name:     "simple error",
			context:  "reading file header",
			cause:    errors.New("invalid signature"),
			expected: "reading file header: invalid signature",
		},
		{
			name:     "nested error",
			context:  "parsing interval index",
			cause:    errors.New("bounding box inverted"),
			expected: "parsing interval index: bounding box inverted",
		},
		{
			name:     "empty context",
			context:  "",
			cause:    errors.New("some error"),
			expected: ": some error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &BBError{
				Context: tt.context,
				Cause:   tt.cause,
			}
			require.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestWrapError(t *testing.T) {
	tests := []struct {
		name    string
		context string
		cause   error
		wantNil bool
	}{
		{
			name:    "wrap non-nil error",
			context: "reading data block",
			cause:   errors.New("IO error"),
			wantNil: false,
		},
		{
			name:    "wrap nil error returns nil",
			context: "some operation",
			cause:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WrapError(tt.context, tt.cause)

			if tt.wantNil {
				require.Nil(t, err)
				return
			}

			require.NotNil(t, err)

			var bbErr *BBError
			ok := errors.As(err, &bbErr)
			require.True(t, ok, "error should be BBError type")
			require.Equal(t, tt.context, bbErr.Context)
			require.Equal(t, tt.cause, bbErr.Cause)
		})
	}
}

func TestBBError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	wrapped := WrapError("context", originalErr)

	require.NotNil(t, wrapped)

	unwrapped := errors.Unwrap(wrapped)
	require.Equal(t, originalErr, unwrapped)
}

func TestBBError_ErrorsIs(t *testing.T) {
	originalErr := errors.New("specific error")
	wrapped := WrapError("first level", originalErr)
	doubleWrapped := WrapError("second level", wrapped)

	require.True(t, errors.Is(doubleWrapped, originalErr))
	require.True(t, errors.Is(wrapped, originalErr))
}

func TestBBError_ErrorsAs(t *testing.T) {
	originalErr := errors.New("base error")
	wrapped := WrapError("context", originalErr)

	var bbErr *BBError
	require.True(t, errors.As(wrapped, &bbErr))
	require.Equal(t, "context", bbErr.Context)
	require.Equal(t, originalErr, bbErr.Cause)
}

func TestWrapError_ChainedWrapping(t *testing.T) {
	baseErr := errors.New("base error")
	level1 := WrapError("level 1", baseErr)
	level2 := WrapError("level 2", level1)
	level3 := WrapError("level 3", level2)

	require.NotNil(t, level3)

	errMsg := level3.Error()
	require.Contains(t, errMsg, "level 3")
	require.Contains(t, errMsg, "level 2")

	require.True(t, errors.Is(level3, baseErr))

	var bbErr *BBError

	require.True(t, errors.As(level3, &bbErr))
	require.Equal(t, "level 3", bbErr.Context)

	unwrapped1 := errors.Unwrap(level3)
	require.True(t, errors.As(unwrapped1, &bbErr))
	require.Equal(t, "level 2", bbErr.Context)

	unwrapped2 := errors.Unwrap(unwrapped1)
	require.True(t, errors.As(unwrapped2, &bbErr))
	require.Equal(t, "level 1", bbErr.Context)

	unwrapped3 := errors.Unwrap(unwrapped2)
	require.Equal(t, baseErr, unwrapped3)
}

func TestWrapError_RealWorldScenarios(t *testing.T) {
	t.Run("file reading error", func(t *testing.T) {
		ioErr := errors.New("unexpected EOF")
		err := WrapError("reading file header", ioErr)

		require.NotNil(t, err)
		require.Contains(t, err.Error(), "reading file header")
		require.Contains(t, err.Error(), "unexpected EOF")
		require.True(t, errors.Is(err, ioErr))
	})

	t.Run("parsing error chain", func(t *testing.T) {
		parseErr := errors.New("invalid format")
		blockErr := WrapError("parsing data block", parseErr)
		queryErr := WrapError("running query", blockErr)
		fileErr := WrapError("opening file", queryErr)

		require.NotNil(t, fileErr)

		require.True(t, errors.Is(fileErr, parseErr))

		msg := fileErr.Error()
		require.Contains(t, msg, "opening file")
	})

	t.Run("nil error in chain", func(t *testing.T) {
		var baseErr error
		wrapped := WrapError("some context", baseErr)

		require.Nil(t, wrapped, "wrapping nil should return nil")
	})
}

func TestBBError_StructFields(t *testing.T) {
	ctx := "test context"
	cause := errors.New("test cause")

	err := &BBError{
		Context: ctx,
		Cause:   cause,
	}

	require.Equal(t, ctx, err.Context)
	require.Equal(t, cause, err.Cause)
}

func TestSentinelErrors_MatchThroughWrap(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"invalid magic", ErrInvalidMagic},
		{"unsupported version", ErrUnsupportedVersion},
		{"not seekable", ErrNotSeekable},
		{"not found", ErrNotFound},
		{"unexpected eof", ErrUnexpectedEOF},
		{"malformed record", ErrMalformedRecord},
		{"io error", ErrIoError},
		{"corrupt index", ErrCorruptIndex},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := WrapError("resolving chromosome", tt.sentinel)
			require.True(t, errors.Is(wrapped, tt.sentinel))

			doubleWrapped := WrapError("querying", wrapped)
			require.True(t, errors.Is(doubleWrapped, tt.sentinel))
		})
	}
}

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{
		ErrInvalidMagic,
		ErrUnsupportedVersion,
		ErrNotSeekable,
		ErrNotFound,
		ErrUnexpectedEOF,
		ErrMalformedRecord,
		ErrIoError,
		ErrCorruptIndex,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			require.False(t, errors.Is(a, b), "sentinel %d should not match sentinel %d", i, j)
		}
	}
}

func BenchmarkWrapError(b *testing.B) {
	baseErr := errors.New("base error")

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = WrapError("context", baseErr)
	}
}

func BenchmarkWrapErrorNil(b *testing.B) {
	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = WrapError("context", nil)
	}
}

func BenchmarkErrorMessage(b *testing.B) {
	err := WrapError("opening file",
		WrapError("resolving chromosome",
			errors.New("invalid signature")))

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = err.Error()
	}
}
