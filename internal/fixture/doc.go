// Package fixture defines the fixture record model: the decoded Definition,
// ordered record collections as they move through directive composition, the
// `@name` reference token, and `name_{start...end}` repeat-range keys.
package fixture
