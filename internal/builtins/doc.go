// ABOUTME: Package builtins ships the default capability pack and its execution
// ABOUTME: backend, covering one capability per trust tier.
package builtins
