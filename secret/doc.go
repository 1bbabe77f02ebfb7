/*
Package secret provides implementations to manage Amazon MSK SCRAM credentials
stored in Secrets Manager.

BasicCredentialVault provides a mskcreds.CredentialVault backed by Secrets
Manager. It builds the requests for the frequently-used credential operations,
translates failures into categorized errors and logs every operation.

BasicSecretsManagerClient provides a convenience wrapper around the Secrets
Manager API. If the BasicCredentialVault does not fulfill your needs, you can
make calls directly to the Secrets Manager API with it instead.
*/
package secret
