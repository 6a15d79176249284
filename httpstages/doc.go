// Package httpstages provides pipeline handlers for outbound HTTP requests and
// response checks.
//
// FetchFuture issues one GET and returns a future for the buffered body. Get
// and Fetch wrap it as success handlers; ParseJSON decodes the body and Expect
// verifies the decoded value.
//
//	p := pipeline.New("check-api").
//		Then(httpstages.Get(nil, "https://api.example.com/status"), nil).
//		Then(httpstages.ParseJSON(), nil).
//		Then(httpstages.ExpectKey("status"), nil)
package httpstages
