// Package conversation turns independently delivered chat messages into
// multi-step, session-scoped conversations.
//
// A Chain is an ordered list of Steps. Entering a non-terminal step registers
// it for the session and emits its prompt; the step's callback runs on the
// next message of that session. A terminal step runs its callback right away.
// At most one step is pending per session, and it is removed from the
// Registry before its callback executes.
package conversation
