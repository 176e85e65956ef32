// Package testutil has loopback servers shared by socksd tests.
package testutil
