// Package alerts implements the rule evaluation engine and webhook delivery
// for winsight-server. Rules are evaluated against each ingested host report;
// webhooks are delivered to Teams, Slack, or generic HTTP targets. Cooldown
// and firing state are tracked per rule and host.
package alerts
