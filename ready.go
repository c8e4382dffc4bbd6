// ABOUTME: Readiness reporting for the dyndns53 plugin.
// ABOUTME: Satisfies the ready.Readiness interface; true once the local store is loaded.

package dyndns53

// Ready reports whether the plugin is ready to serve.
func (d *DynDNS) Ready() bool {
	return d.Store == nil || d.Store.Ready()
}
