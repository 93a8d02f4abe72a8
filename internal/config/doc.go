// Package config loads and validates the YAML configuration file.
//
// The file declares named notification backends and the resources that
// reference them. Per-kind checker and notifier settings are kept opaque
// (yaml.Node) and decoded by the respective factory at construction time, so
// config itself stays ignorant of the kind set.
//
// Watch() provides fsnotify-based hot-reload; a reload that fails to parse
// keeps the previous config active.
package config
