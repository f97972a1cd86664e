// Package compose resolves file-level fixture directives. It loads fixture
// documents, layers `includes` chains into one merged fixture set per file,
// and flattens `depends` chains into materialization order. The two
// directives are walked independently, each with its own cycle detection.
package compose
