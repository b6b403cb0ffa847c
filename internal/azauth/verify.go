package azauth

import (
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/resources/armsubscriptions"
)

// ErrNoSubscription is returned when the identity can see no subscription.
var ErrNoSubscription = errors.New("no subscriptions visible to this identity")

// SubscriptionLister returns the first subscription the credential can read.
type SubscriptionLister interface {
	FirstSubscriptionID(ctx context.Context) (string, error)
}

type armSubscriptionLister struct {
	client *armsubscriptions.Client
}

// NewSubscriptionLister lists subscriptions through Azure Resource Manager.
func NewSubscriptionLister(cred azcore.TokenCredential) (SubscriptionLister, error) {
	client, err := armsubscriptions.NewClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("subscriptions client: %w", err)
	}
	return &armSubscriptionLister{client: client}, nil
}

func (l *armSubscriptionLister) FirstSubscriptionID(ctx context.Context) (string, error) {
	pager := l.client.NewListPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return "", err
		}
		for _, s := range page.Value {
			if s != nil && s.SubscriptionID != nil {
				return *s.SubscriptionID, nil
			}
		}
	}
	return "", ErrNoSubscription
}

// Verify proves that credentials work by reading one subscription.
func Verify(ctx context.Context, lister SubscriptionLister) (string, error) {
	id, err := lister.FirstSubscriptionID(ctx)
	if err != nil {
		return "", err
	}
	return id, nil
}

// VerifyMessage formats the outcome the way the verify-auth command prints it.
func VerifyMessage(subscriptionID string, err error) string {
	if err != nil {
		return fmt.Sprintf("Azure authentication failed: %v", err)
	}
	return fmt.Sprintf("Azure authentication successful. Subscription ID: %s", subscriptionID)
}
