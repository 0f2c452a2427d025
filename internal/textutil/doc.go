// Package textutil provides string helpers for user-supplied names.
package textutil
