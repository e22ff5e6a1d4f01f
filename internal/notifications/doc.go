// Package notifications pushes lesson outcomes to an ntfy topic. Completion
// and failure messages are toggled separately in [notifications].
package notifications
