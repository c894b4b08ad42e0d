// Package wallet provides the signing capability used throughout the channel
// client: producing 65-byte secp256k1 signatures over 32-byte digests and
// recovering Ethereum addresses from them.
//
// Two backends implement the Signer interface:
//
//   - LocalSigner holds an in-memory ECDSA key and can sign any digest.
//   - PreSignedTable holds a fixed digest→signature mapping produced ahead of
//     time. It is handed to components that must authorize known operations
//     (withdrawals) without ever holding the key; unknown digests fail with
//     errs.UnanticipatedSignatureRequest.
//
// Verification is backend-independent: RecoverSigner and VerifySignature work
// on any (digest, signature) pair.
package wallet
