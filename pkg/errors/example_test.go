package errors_test

import (
	"fmt"
	"io"

	"github.com/ajitpratap0/movieport/pkg/errors"
)

// Example demonstrates basic error creation and details.
func Example() {
	err := errors.New(errors.ErrorTypeStorage, "failed to create bucket").
		WithDetail("bucket", "movies-bucket")

	fmt.Println(err.Error())
	fmt.Println(err.Details["bucket"])

	// Output:
	// storage: failed to create bucket
	// movies-bucket
}

// ExampleWrap shows how a codec wraps a lower-level failure.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeParse, "line 3: malformed rating").
		WithDetail("line", 3)

	fmt.Println(errors.IsParse(err))
	fmt.Println(errors.Is(err, io.ErrUnexpectedEOF))

	// Output:
	// true
	// true
}

// ExampleIsType shows that the type of an inner error stays visible after re-wrapping.
func ExampleIsType() {
	inner := errors.New(errors.ErrorTypeCatalog, "commit rejected")
	outer := errors.Wrap(inner, errors.ErrorTypeStorage, "stage relational->table failed")

	fmt.Println(errors.IsCatalog(outer))
	fmt.Println(errors.IsStorage(outer))
	fmt.Println(errors.IsCountMismatch(outer))

	// Output:
	// true
	// true
	// false
}
