/*
Package silhouettecrypto provides the cryptographic core for keyword-private
retrieval. It implements a pure Go oblivious key-value store over random
banded systems (package okvs), a single-server private information retrieval
scheme from the learning-with-errors assumption (package pir), and the glue
that composes the two into keyword-addressed private lookups (package
keyword), with no dependency on cgo or platform-specific code.
*/
package silhouettecrypto
