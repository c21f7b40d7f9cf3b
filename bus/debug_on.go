//go:build ahbdebug

package bus

// DebugChecks enables the cross-checks that are too costly for normal runs.
const DebugChecks = true
