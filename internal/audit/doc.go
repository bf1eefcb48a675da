// ABOUTME: Package audit defines the invocation audit record and the sink contract
// ABOUTME: used to forward records to an external collaborator.
package audit
