// Package main provides the entry point for the Nextcloud credential broker.
// The broker sits between the PAM stack and a Nextcloud server: it verifies
// login credentials against the Nextcloud API, keeps an offline credential
// cache for server outages, handles the two phase password change, and
// mirrors remote group membership onto local system groups. Administrator
// commands provision local accounts for Nextcloud users and reconcile
// group membership in bulk.
package main
