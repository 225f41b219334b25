package synth

import (
	"archive/zip"
	"encoding/json"
	"io"

	"github.com/meshwire/wgmesh/pkg/keys"
	"github.com/meshwire/wgmesh/pkg/model"
)

// GenerateZip renders every node and client config plus the manifest and
// writes them to w as a zip archive:
//
//	nodes/<sanitized-name>/<sanitized-interface>.conf
//	nodes/<sanitized-name>/babeld.conf   (only if Spec.EnableBabel)
//	clients/<sanitized-name>/<sanitized-interface>.conf
//	manifest.json
func GenerateZip(w io.Writer, mesh *model.ResolvedMesh, psk keys.PSKStrategy) (Manifest, error) {
	zw := zip.NewWriter(w)
	ifaceFile := SanitizeFilename(mesh.Spec.InterfaceName) + ".conf"

	for i, node := range mesh.Nodes {
		cfg, err := RenderNodeConfig(mesh, i, psk)
		if err != nil {
			return Manifest{}, err
		}
		dir := "nodes/" + SanitizeFilename(node.Name) + "/"
		if err := writeZipEntry(zw, dir+ifaceFile, cfg); err != nil {
			return Manifest{}, err
		}
		if mesh.Spec.EnableBabel {
			if err := writeZipEntry(zw, dir+"babeld.conf", RenderBabeld(mesh)); err != nil {
				return Manifest{}, err
			}
		}
	}

	for i, client := range mesh.Clients {
		cfg, err := RenderClientConfig(mesh, i, psk)
		if err != nil {
			return Manifest{}, err
		}
		dir := "clients/" + SanitizeFilename(client.Name) + "/"
		if err := writeZipEntry(zw, dir+ifaceFile, cfg); err != nil {
			return Manifest{}, err
		}
	}

	manifest, err := BuildManifest(mesh, psk)
	if err != nil {
		return Manifest{}, err
	}
	manifestJSON, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return Manifest{}, err
	}
	if err := writeZipEntry(zw, "manifest.json", string(manifestJSON)); err != nil {
		return Manifest{}, err
	}

	if err := zw.Close(); err != nil {
		return Manifest{}, err
	}
	return manifest, nil
}

func writeZipEntry(zw *zip.Writer, name, contents string) error {
	f, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = io.WriteString(f, contents)
	return err
}
