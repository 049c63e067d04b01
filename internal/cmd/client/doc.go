// Package client provides the `drumbeat` command-line client.
//
// The CLI talks to the drumbeat HTTP API. The base URL comes from the
// embedding application through a BaseURLFunc; the standalone binary reads
// DRUMBEAT_API (default http://127.0.0.1:3000). Credentials are passed with
// --token or DRUMBEAT_TOKEN and sent base64 encoded as a bearer token.
//
// Usage
//
//	drumbeat message create -q builds --subject build-42 --body '{"ref":"main"}'
//	drumbeat message list -q builds --status pending
//	drumbeat message list -q builds --filter 'request.ref == "main"'
//	drumbeat message get -q builds 1
//	drumbeat message postback -q builds 1 --status completed --body '{"ok":true}'
//	drumbeat message cancel -q builds 2
//	drumbeat message delete -q builds 2
//	drumbeat health
package client
