package bridge

import (
	"context"
	"fmt"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
)

// secretLookup resolves a secret by id when it is absent from the
// environment. Package variable so tests can stand in for the real service.
var secretLookup = secretFromManager

// secretFromManager fetches the latest version of a secret from Google
// Secret Manager, for the project named by GOOGLE_CLOUD_PROJECT or
// PROJECT_ID. The caller decides whether a failed lookup is fatal.
func secretFromManager(ctx context.Context, secretID string) (string, error) {
	project := os.Getenv("GOOGLE_CLOUD_PROJECT")
	if project == "" {
		project = os.Getenv("PROJECT_ID")
	}
	if project == "" {
		return "", fmt.Errorf("no GOOGLE_CLOUD_PROJECT or PROJECT_ID set")
	}

	client, err := secretmanager.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("secret manager client: %w", err)
	}
	defer client.Close()

	resp, err := client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: fmt.Sprintf("projects/%s/secrets/%s/versions/latest", project, secretID),
	})
	if err != nil {
		return "", fmt.Errorf("accessing secret %s: %w", secretID, err)
	}
	return string(resp.GetPayload().GetData()), nil
}
