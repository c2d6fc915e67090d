// Package normalisers provides implementations of the Normaliser interface.
// A normaliser turns the raw bytes of an archive entry into decoded text.
package normalisers
