package graph_test

import (
	"context"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poltergeist/reactor/pkg/graph"
	"github.com/poltergeist/reactor/pkg/mocks"
	"github.com/poltergeist/reactor/pkg/types"
)

func TestBuild_FetchesEachCoordinateOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockMetadataSource(ctrl)

	lib := types.Coordinate{Group: "com.acme", Artifact: "lib", Version: "1.0"}
	util := types.Coordinate{Group: "com.acme", Artifact: "util", Version: "1.0"}

	source.EXPECT().FetchMetadata(gomock.Any(), lib).
		Return(&graph.Metadata{Coordinate: lib, Dependencies: []types.Dependency{dep("com.acme", "util", "1.0")}}, nil).
		Times(1)
	source.EXPECT().FetchMetadata(gomock.Any(), util).
		Return(&graph.Metadata{Coordinate: util}, nil).
		Times(1)

	cached := graph.NewCachingSource(source)
	b := graph.NewBuilder(cached, nil, nil)
	m := rootModule()

	for i := 0; i < 2; i++ {
		g, err := b.Build(context.Background(), m, []types.Dependency{dep("com.acme", "lib", "1.0")}, nil)
		require.NoError(t, err)
		assert.True(t, g.Contains(util))
	}
}
