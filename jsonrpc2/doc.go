/*
	Package jsonrpc2 implements JSONRPC 2.0 over HTTP, including batched
	calls.

	Server is an RPC method registry. Given a receiver, it will expose callable
	exported methods with a name prefix, such as "health_" + "status".

	HTTPServer serves a Server's registry over HTTP, for single and batched
	requests.

	HTTPService is a caller for a remote HTTP endpoint. Local is a caller for
	an in-process Server, which is useful in tests.
*/
package jsonrpc2
