// Package types provides core types shared across the fixflow module.
// This package has ZERO dependencies on other fixflow packages to avoid
// circular imports. All other packages should import types from here.
package types
