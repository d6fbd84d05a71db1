// Package security inspects the TLS certificates of the HTTPS peers the agent
// depends on. Audit runs once at startup; an expired or expiring certificate
// on the report server or an http source is logged so operators notice it
// before delivery starts failing.
package security
