/*
Package render mounts resolved bundles into isolation boundaries.

A host element is an *html.Node in the host document. Each host owns at most
one Boundary, a declarative open shadow root inserted as the host's first
child:

	<div id="viewer">
	  <template shadowrootmode="open">
	    <style>...bundle css...</style>
	    <div data-subapp="true">...bundle markup...</div>
	  </template>
	</div>

Every Render clears the boundary before mounting, so nothing from a previous
bundle survives. Detach removes the boundary from the host.
*/
package render
