// Package params builds and validates the query parameters of the paged
// listing endpoints. Builders are pure: Build never performs I/O, and a
// request that fails validation is never sent.
package params

import (
	"net/url"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Query is a fully built, validated set of query parameters.
type Query = url.Values

// MaxLimit is the largest page size accepted by the listing endpoints.
const MaxLimit = 500

// Sort directions.
const (
	SortAsc  = "ASC"
	SortDesc = "DESC"
)

var (
	validate *validator.Validate
	once     sync.Once
)

func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report wire names (the `query` tag) in field errors.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}
