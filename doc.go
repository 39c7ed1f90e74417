// Package vantor is an embeddable account authentication engine: password
// login with Argon2id hashing, email-verified registration, a TOTP second
// factor with single-use recovery codes, trusted-device bypass, per-account
// lockouts, and JWT access/refresh token issuance with rotation.
//
// The host application supplies persistence through the AccountStore
// interface and email delivery through Mailer; short-lived login and
// verification challenges live in Redis. Construct an Engine with the
// Builder:
//
//	engine, err := vantor.New().
//		WithConfig(cfg).
//		WithRedis(redisClient).
//		WithAccountStore(store).
//		WithMailer(mailer).
//		Build()
//
// All engine operations are safe for concurrent use. Account writes use
// optimistic versioning, so concurrent logins against the same account
// retry instead of losing updates.
package vantor
