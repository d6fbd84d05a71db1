// Package types defines the report types shared by winsight-agent and
// winsight-server. The agent builds a Report once per analysis pass and ships
// it as JSON; the server stores, serves, and alerts on it without importing
// any agent package.
package types
