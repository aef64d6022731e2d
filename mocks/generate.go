package mocks

//go:generate mockgen -destination=./mock_source.go -package=mocks github.com/kvdm-lab/finexport/pkg/export/source Source
//go:generate mockgen -destination=./mock_writer.go -package=mocks github.com/kvdm-lab/finexport/pkg/export/writer ArtifactWriter,Factory
