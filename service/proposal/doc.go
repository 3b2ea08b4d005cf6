// Package proposal defines the durable store for correction proposals. The
// store is the single source of truth for proposal status; all status changes
// go through the compare-and-set Transition so that concurrent resolvers
// cannot move the same proposal out of PENDING more than once.
package proposal
