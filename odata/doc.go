// Package odata shapes and executes requests against a FileMaker OData v4
// endpoint.
//
// The package has two halves. The request shaper is a set of pure string
// functions ([NormalizeDatesInFilter], [QuoteFieldsInSelect],
// [QuoteFieldsInOrderBy], [QuoteFieldsInFilter], [ExtractDateRange], and
// [EncodeQuery]) that rewrite AI-generated OData expressions into the shapes
// the server accepts. The [Client] executes GET/POST/PATCH/DELETE requests
// with Basic auth, classifies failures into [Kind] values, and retries
// transient connection errors with exponential backoff via
// [github.com/cenkalti/backoff/v5].
//
// FileMaker's OData implementation deviates from the v4 specification in
// several documented ways, and the shaper exists to compensate: date
// literals must be bare ISO dates (no quotes, no time component), field
// names must be double-quoted, query strings must encode spaces as %20
// (never +) while passing $ , / ' through literally, and the $metadata
// document must be requested with an explicit XML Accept header.
package odata
