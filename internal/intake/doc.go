// Package intake implements the conversational intake form: the ordered
// states, the transition rules, per-state validation and the multi-select
// services sub-flow. It knows nothing about Telegram; the bot package decodes
// updates into Events and renders the returned Reply.
package intake
