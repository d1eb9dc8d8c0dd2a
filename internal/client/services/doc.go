// Package services contains the application services of the client: the
// generic local-first EntityService and the SyncService that reconciles its
// queue with the server, instantiated per domain, plus AuthService for
// online and offline login.
package services
