//go:build !metis

package mesh

// PartitionMetis is only available in builds with the metis tag
func PartitionMetis(m *Mesh, nparts int) ([]int, error) {
	return nil, ErrNoMetis
}
