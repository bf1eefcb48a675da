// ABOUTME: Package auth verifies bearer trust tokens: HS256 JWTs whose claims carry
// ABOUTME: an identity and a declared trust level.
package auth
