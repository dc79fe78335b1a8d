package services

import (
	"context"
	"net/url"

	"github.com/joshuarp/branchdesk/internal/apiclient"
	"github.com/joshuarp/branchdesk/internal/domain/vo"
)

// APIClient is the slice of apiclient.Client the admin services call.
type APIClient interface {
	Do(ctx context.Context, req apiclient.Request) (*apiclient.Response, error)
	Surface(ctx context.Context, err error) error
	Reclassify(ctx context.Context, err error, kind apiclient.Kind) error
}

var _ APIClient = (*apiclient.Client)(nil)

// surfaceMutation reports a failed write. A closed branch arrives as an
// application error with a known code and is raised as its own kind.
func surfaceMutation(ctx context.Context, client APIClient, err error) error {
	ce, ok := apiclient.AsClassified(err)
	if ok && ce.Kind == apiclient.KindAPIError && ce.Code == vo.CodeBranchTemporarilyClosed {
		return client.Reclassify(ctx, err, apiclient.KindBranchTemporarilyClosed)
	}
	return client.Surface(ctx, err)
}

func pathID(prefix, id, suffix string) string {
	endpoint := prefix + "/" + url.PathEscape(id)
	if suffix != "" {
		endpoint += "/" + suffix
	}
	return endpoint
}
