// Package auth provides user accounts, password hashing, and token
// management for the hub's HTTP API.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// Access tokens are short-lived HS256 JWTs; refresh tokens are opaque
// random values stored as SHA-256 hashes and rotated on every use.
// Each refresh token belongs to a family, and reuse of a revoked token
// revokes the whole family, limiting the damage from a stolen token.
//
// Authorisation is role-based: viewer accounts can read state, user
// accounts can additionally call services, and admin accounts manage
// users, devices and automations. See HasPermission.
//
//	repo := auth.NewUserRepository(db)
//	tokens := auth.NewTokenRepository(db)
//	if _, err := auth.SeedAdmin(ctx, repo, logger); err != nil {
//		return err
//	}
package auth
