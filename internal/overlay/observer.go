package overlay

// Observer receives notifications from a Surface. Calls happen synchronously
// while the Surface is dispatching, so implementations must not block.
type Observer interface {
	// OnAction is called when the user activates a group's control.
	OnAction(g *Group, target ControlTarget)
	// OnHover is called when the pointer enters or leaves a group.
	OnHover(g *Group, entering bool)
	// OnDestroyed is called once a group has been torn down. Holders of a
	// back-reference to g must drop it.
	OnDestroyed(g *Group)
}

// ObserverFuncs adapts optional functions to an Observer.
type ObserverFuncs struct {
	Action    func(g *Group, target ControlTarget)
	Hover     func(g *Group, entering bool)
	Destroyed func(g *Group)
}

func (o ObserverFuncs) OnAction(g *Group, target ControlTarget) {
	if o.Action != nil {
		o.Action(g, target)
	}
}

func (o ObserverFuncs) OnHover(g *Group, entering bool) {
	if o.Hover != nil {
		o.Hover(g, entering)
	}
}

func (o ObserverFuncs) OnDestroyed(g *Group) {
	if o.Destroyed != nil {
		o.Destroyed(g)
	}
}
