// Package util provides small numeric helpers shared by the client packages.
package util
