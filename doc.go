/*
Package mskcreds provides interfaces to manage the SASL/SCRAM credentials that
Amazon MSK clients use to authenticate against a Kafka cluster. Credentials are
stored as secrets in Secrets Manager and associated with the cluster through a
resource policy that lets the MSK service read them.

The CredentialVault interface provides an abstraction to create, read, update
and delete credential secrets without needing to make direct calls to the API
to perform frequently-used operations.

The SecretsManagerClient interface provides a convenience wrapper around the
Secrets Manager API. If the CredentialVault does not fulfill your needs, you can
make API calls directly to Secrets Manager instead.
*/
package mskcreds
