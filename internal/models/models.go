// Package models holds the persisted entities of the board service and the
// database bootstrap shared by every store-backed component.
package models
