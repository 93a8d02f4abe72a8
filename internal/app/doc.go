// Package app turns a validated configuration into a runnable monitoring
// fleet. All kind and name resolution happens here, once, before any polling
// starts; misconfiguration aborts construction with the offending name or
// kind in the error.
package app
