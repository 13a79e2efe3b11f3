// Package domain contains the core entities of the staging import pipeline:
// import sessions and the staged bookmark items that belong to them. Entities
// carry their own validation rules and status enums; they hold no persistence
// or scheduling logic.
package domain
