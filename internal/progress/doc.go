// Package progress turns the unstructured output of the fetch and transcode
// processes into structured samples. Unparseable lines are silently skipped
// because external tool output varies across versions.
package progress
