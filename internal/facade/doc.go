// Package facade is the top-level entry point named by spec.md §4.5 and
// §6: createQueue, deleteQueue, sendMessageToRegion, getNextMessages,
// loadMessageData, ackMessage, and the operator/test refresh hook. Every
// other package in this module is a collaborator wired together here,
// following §9's note that dependency injection is replaced by explicit
// constructor parameters rather than a process-wide registry.
package facade
