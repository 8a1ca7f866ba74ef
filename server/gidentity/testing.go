package gidentity

type TokenVerifierStub struct {
	Identity    *ExternalIdentity
	VerifyError error
}

func (stub *TokenVerifierStub) VerifyIDToken(idToken string) (*ExternalIdentity, error) {
	return stub.Identity, stub.VerifyError
}
