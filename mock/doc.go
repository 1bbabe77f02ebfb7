/*
Package mock provides mock implementations of interfaces for testing purposes.

The SecretsManagerClient and TagClient can be used for running tests without
relying on infrastructure in AWS to be set up. Both are backed by the same
in-memory GlobalSecretCache.
*/
package mock
