// Package health serves liveness and readiness endpoints.
//
// [Liveness] always answers 200. [Readiness] runs the registered checks in
// parallel under a timeout and answers 503 when any of them fails. Both
// answer JSON when the client asks for it (Accept header or ?format=json).
package health
