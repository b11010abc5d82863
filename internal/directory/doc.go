// Package directory talks to the vendor identity and directory service:
// login, credential checks, token refresh and user-state reads.
//
// Every failure is classified as either ErrAuthentication (bad credentials,
// expired or revoked tokens; the caller should re-authenticate) or
// ErrCommunication (network or service failure; the caller should retry on
// its next scheduled attempt).
package directory
