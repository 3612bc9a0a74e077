package client

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DatasetClient downloads the station CSV when it is hosted remotely.
type DatasetClient struct {
	*BaseClient
}

func NewDatasetClient(config ClientConfig, logger *zap.Logger) *DatasetClient {
	return &DatasetClient{
		BaseClient: NewBaseClient("dataset", config, logger),
	}
}

func (c *DatasetClient) Fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := c.GetWithRetry(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to download dataset: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("failed to download dataset: empty body from %s", url)
	}
	return data, nil
}
