// Package otypes holds the in-memory model of what the server stores:
// records (documents), record ids, lightweight links, cluster
// descriptors and the parsed server release version.
package otypes
